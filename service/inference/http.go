package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/config"
)

type httpService struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTP posts snapshots to {base}/recognition/recognize-frame as multipart
// form data.
func NewHTTP(cfgSvc config.IService) IService {
	return &httpService{
		BaseURL: strings.TrimRight(cfgSvc.GetBackendURL(), "/"),
		Client:  &http.Client{Timeout: cfgSvc.GetHTTPTimeout()},
	}
}

type recognizedFace struct {
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Name       string    `json:"name"`
	Similarity float64   `json:"similarity"`
	RollNumber *string   `json:"roll_number"`
	Email      *string   `json:"email"`
}

type recognizeResponse struct {
	RecognizedFaces []recognizedFace `json:"recognized_faces"`
	AnnotatedFrame  *string          `json:"annotated_frame"`
}

func (svc *httpService) Recognize(ctx context.Context, snapshot frame.Snapshot, cameraID string) (model.RecognitionResult, error) {
	data := snapshot.Frame.Bytes()
	if len(data) == 0 {
		return model.RecognitionResult{}, fmt.Errorf("%w: empty snapshot", model.ErrRecognitionService)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "snapshot.jpg")
	if err != nil {
		return model.RecognitionResult{}, err
	}
	if _, err := part.Write(data); err != nil {
		return model.RecognitionResult{}, err
	}
	if cameraID != "" {
		if err := writer.WriteField("camera_id", cameraID); err != nil {
			return model.RecognitionResult{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return model.RecognitionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.BaseURL+"/recognition/recognize-frame", body)
	if err != nil {
		return model.RecognitionResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := svc.Client.Do(req)
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: %w", model.ErrRecognitionService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.RecognitionResult{}, fmt.Errorf("%w: %s", model.ErrRecognitionService, statusDetail(resp))
	}

	var payload recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.RecognitionResult{}, fmt.Errorf("%w: malformed response: %w", model.ErrRecognitionService, err)
	}

	return toResult(payload)
}

func toResult(payload recognizeResponse) (model.RecognitionResult, error) {
	result := model.RecognitionResult{
		Faces: make([]model.RecognizedFace, 0, len(payload.RecognizedFaces)),
	}

	if payload.AnnotatedFrame != nil && *payload.AnnotatedFrame != "" {
		encoded := *payload.AnnotatedFrame
		// Tolerate data URIs as well as bare base64.
		if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
			encoded = encoded[i+len(";base64,"):]
		}
		annotated, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return model.RecognitionResult{}, fmt.Errorf("%w: annotated frame: %w", model.ErrRecognitionService, err)
		}
		result.AnnotatedFrame = annotated
	}

	for i, f := range payload.RecognizedFaces {
		if len(f.BBox) != 0 && len(f.BBox) != 4 {
			return model.RecognitionResult{}, fmt.Errorf("%w: face %d: %w", model.ErrRecognitionService, i,
				xerrors.Errorf("bbox has %d values", len(f.BBox)))
		}
		face := model.RecognizedFace{
			Name:       f.Name,
			RollNumber: f.RollNumber,
			Email:      f.Email,
			Similarity: clamp01(f.Similarity),
			Confidence: clamp01(f.Confidence),
		}
		if face.Name == "" {
			face.Name = model.UnknownName
		}
		for j, v := range f.BBox {
			face.BBox[j] = int(v)
		}
		result.Faces = append(result.Faces, face)
	}
	return result, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func statusDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != nil {
		return fmt.Sprintf("status %d: %v", resp.StatusCode, payload.Detail)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
