package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fr-attendance/frame"
	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/config"
)

// Snapshots above this size are rejected rather than buffered.
const maxSnapshotBytes = 16 << 20

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

type httpService struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTP talks to the backend camera endpoints:
// GET {base}/cameras/ and GET {base}/cameras/{id}/snapshot.
func NewHTTP(cfgSvc config.IService) IService {
	return &httpService{
		BaseURL: strings.TrimRight(cfgSvc.GetBackendURL(), "/"),
		Client:  &http.Client{Timeout: cfgSvc.GetHTTPTimeout()},
	}
}

type cameraList struct {
	Cameras []struct {
		ID json.RawMessage `json:"id"`
	} `json:"cameras"`
}

func (svc *httpService) ListCameras(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.BaseURL+"/cameras/", nil)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing cameras: %w: %w", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing cameras: %w: %s", model.ErrSourceUnavailable, statusDetail(resp))
	}

	var list cameraList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding camera list: %w: %w", model.ErrSourceUnavailable, err)
	}

	ids := make([]string, 0, len(list.Cameras))
	for _, c := range list.Cameras {
		id, err := normalizeID(c.ID)
		if err != nil {
			return nil, fmt.Errorf("decoding camera list: %w: %w", model.ErrSourceUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (svc *httpService) FetchSnapshot(ctx context.Context, cameraID string) (frame.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/cameras/%s/snapshot", svc.BaseURL, url.PathEscape(cameraID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return frame.Snapshot{}, err
	}

	resp, err := svc.Client.Do(req)
	if err != nil {
		return frame.Snapshot{}, fmt.Errorf("camera %s: %w: %w", cameraID, model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return frame.Snapshot{}, fmt.Errorf("camera %s: %w: %s", cameraID, model.ErrSourceUnavailable, statusDetail(resp))
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	n, err := buf.ReadFrom(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil || n == 0 || n > maxSnapshotBytes {
		bufferPool.Put(buf)
		if err == nil {
			err = xerrors.Errorf("snapshot size %d out of range", n)
		}
		return frame.Snapshot{}, fmt.Errorf("camera %s: %w: %w", cameraID, model.ErrSourceUnavailable, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = frame.JPEGContentType
	}

	return frame.Snapshot{
		CameraID:   cameraID,
		CapturedAt: time.Now(),
		Frame: frame.NewHandle(buf.Bytes(), contentType, frame.OriginSnapshot, func([]byte) {
			bufferPool.Put(buf)
		}),
	}, nil
}

// normalizeID accepts numeric or string JSON ids.
func normalizeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", xerrors.Errorf("camera id %s is neither a string nor a number", string(raw))
	}
	return n.String(), nil
}

// statusDetail extracts FastAPI-style {"detail": ...} bodies when present.
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
