package entities

import (
	"time"

	"github.com/google/uuid"
)

// DatasetEventType represents the type of dataset event
type DatasetEventType string

const (
	DatasetEventTypePublished DatasetEventType = "dataset_published"
)

// DatasetEvent announces that a new artifact is available
type DatasetEvent struct {
	ID           string           `json:"id"`
	EventType    DatasetEventType `json:"event_type"`
	SnapshotTag  string           `json:"snapshot_tag"`
	DataVersion  string           `json:"data_version"`
	ArtifactPath string           `json:"artifact_path"`
	BuildID      string           `json:"build_id,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NewDatasetPublishedEvent creates a new dataset_published event
func NewDatasetPublishedEvent(report *BuildReport, artifactPath string) *DatasetEvent {
	return &DatasetEvent{
		ID:           uuid.NewString(),
		EventType:    DatasetEventTypePublished,
		SnapshotTag:  report.Snapshot,
		DataVersion:  report.DataVersion,
		ArtifactPath: artifactPath,
		BuildID:      report.BuildID,
		Timestamp:    time.Now().UTC(),
	}
}
