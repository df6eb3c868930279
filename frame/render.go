package frame

import "github.com/khaledhikmat/fr-attendance/model"

const JPEGContentType = "image/jpeg"

// Render maps a recognition result to the frame that should be displayed.
// The server-annotated frame wins when present; otherwise the raw snapshot is
// shown. Inputs are not modified and the returned handle belongs to the caller.
func Render(snapshot Snapshot, result model.RecognitionResult) *Handle {
	if result.AnnotatedFrame != nil {
		return NewHandle(result.AnnotatedFrame, JPEGContentType, OriginAnnotated, nil)
	}
	return snapshot.Frame.Share()
}
