package journal

import "github.com/khaledhikmat/fr-attendance/model"

// IService appends recognition, error and stats records to durable logs.
type IService interface {
	RecordFrame(record model.FrameRecord) error
	RecordError(err interface{}) error
	RecordStats(stats interface{}) error
	Close() error
}
