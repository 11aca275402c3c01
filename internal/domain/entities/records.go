package entities

// BedRecord is the aggregated bed count of one type at one establishment.
type BedRecord struct {
	CNESID      string
	BedTypeCode string
	ExistingQty int
}

// ServiceAssignment links an establishment to a specialized service and its
// classification.
type ServiceAssignment struct {
	CNESID             string
	ServiceCode        string
	ClassificationCode string
	SUSAmbulatory      bool
	SUSHospital        bool
}

// SUSFlagged reports whether either SUS flag is set.
func (s ServiceAssignment) SUSFlagged() bool {
	return s.SUSAmbulatory || s.SUSHospital
}

// ConvenioRecord is one agreement row from tbEstabPrestConv.
type ConvenioRecord struct {
	CNESID       string
	ConvenioCode string
}
