package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultFetchTimeout = 10 * time.Second

	maxResponseSize = 8 << 20 // 8 MB
)

var ErrNotFound = errors.New("not found")

// wireMachine is the upstream JSON shape of one machine.
type wireMachine struct {
	ID              *string          `json:"id" validate:"required,min=1"`
	Name            string           `json:"name"`
	Type            string           `json:"machine_type"`
	Status          string           `json:"status" validate:"omitempty,oneof=running failed finished idle"`
	Location        *models.Location `json:"location"`
	Floor           *int             `json:"floor"`
	InstallDate     string           `json:"install_date"`
	LastMaintenance string           `json:"last_maintenance"`
	LastUpdate      *string          `json:"last_update"`
}

func (w wireMachine) toModel() (models.Machine, error) {
	m := models.Machine{
		ID:              *w.ID,
		Name:            w.Name,
		Type:            w.Type,
		Status:          models.MachineStatus(w.Status),
		Location:        w.Location,
		Floor:           w.Floor,
		InstallDate:     w.InstallDate,
		LastMaintenance: w.LastMaintenance,
	}
	if w.LastUpdate != nil && *w.LastUpdate != "" {
		ts, err := models.ParseTimestamp(*w.LastUpdate)
		if err != nil {
			return models.Machine{}, fmt.Errorf("machine %q last_update: %w", m.ID, err)
		}
		m.LastUpdate = &ts
	}
	return m, nil
}

type wireMachineDetails struct {
	wireMachine
	LastEvents []models.StatusEvent `json:"last_events"`
}

// MachineHTTP reads machines from the upstream REST API.
type MachineHTTP struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	validate *validator.Validate
	log      *logger.Logger
}

var _ MachineAPI = (*MachineHTTP)(nil)

func NewMachineHTTP(baseURL string, timeout time.Duration, log *logger.Logger) *MachineHTTP {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MachineHTTP{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		client:   &http.Client{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// FetchMachines returns the upstream machine list. Any failure degrades to an
// empty list. When some entries are invalid, the ones with a usable id are kept.
func (r *MachineHTTP) FetchMachines(ctx context.Context) []models.Machine {
	body, err := r.get(ctx, "/machines")
	if err != nil {
		r.log.Warnw("machines_fetch_failed", "err", err)
		return []models.Machine{}
	}

	machines, salvaged, err := r.decodeMachineList(body)
	if err != nil {
		r.log.Warnw("machines_decode_failed", "err", err)
		return []models.Machine{}
	}
	if salvaged {
		r.log.Warnw("machines_payload_salvaged", "kept", len(machines))
	}

	located := 0
	for _, m := range machines {
		if m.HasLocation() {
			located++
		}
	}
	r.log.Infow("machines_fetched", "count", len(machines), "with_location", located)
	return machines
}

// FetchMachine returns one machine with its recent events. The payload may be
// wrapped in {"data": ...} or bare.
func (r *MachineHTTP) FetchMachine(ctx context.Context, id string) (models.MachineDetails, error) {
	body, err := r.get(ctx, "/machines/"+url.PathEscape(id))
	if err != nil {
		return models.MachineDetails{}, err
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	raw := body
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		raw = env.Data
	}

	var wd wireMachineDetails
	if err := json.Unmarshal(raw, &wd); err != nil {
		return models.MachineDetails{}, fmt.Errorf("decode machine %q: %w", id, err)
	}
	if err := r.validate.Struct(wd.wireMachine); err != nil {
		return models.MachineDetails{}, fmt.Errorf("validate machine %q: %w", id, err)
	}
	m, err := wd.toModel()
	if err != nil {
		return models.MachineDetails{}, err
	}
	events := wd.LastEvents
	if events == nil {
		events = []models.StatusEvent{}
	}
	return models.MachineDetails{Machine: m, LastEvents: events}, nil
}

func (r *MachineHTTP) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("GET %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

// decodeMachineList decodes {"data": [...]}. If any entry fails validation the
// whole list is rebuilt by salvaging entries one by one.
func (r *MachineHTTP) decodeMachineList(body []byte) ([]models.Machine, bool, error) {
	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("decode machines: %w", err)
	}

	strict := make([]models.Machine, 0, len(env.Data))
	for _, raw := range env.Data {
		m, err := r.decodeMachine(raw)
		if err != nil {
			return salvageMachines(env.Data), true, nil
		}
		strict = append(strict, m)
	}
	return strict, false, nil
}

func (r *MachineHTTP) decodeMachine(raw json.RawMessage) (models.Machine, error) {
	var w wireMachine
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Machine{}, err
	}
	if err := r.validate.Struct(w); err != nil {
		return models.Machine{}, err
	}
	return w.toModel()
}

func salvageMachines(raws []json.RawMessage) []models.Machine {
	out := make([]models.Machine, 0, len(raws))
	for _, raw := range raws {
		if m, ok := salvageMachine(raw); ok {
			out = append(out, m)
		}
	}
	return out
}

// salvageMachine keeps an entry that is an object with a non-empty string id.
// Fields that fail to decode are left empty.
func salvageMachine(raw json.RawMessage) (models.Machine, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.Machine{}, false
	}

	var m models.Machine
	if err := json.Unmarshal(fields["id"], &m.ID); err != nil || m.ID == "" {
		return models.Machine{}, false
	}
	decodeField(fields, "name", &m.Name)
	decodeField(fields, "machine_type", &m.Type)
	decodeField(fields, "install_date", &m.InstallDate)
	decodeField(fields, "last_maintenance", &m.LastMaintenance)
	decodeField(fields, "location", &m.Location)
	decodeField(fields, "floor", &m.Floor)

	var status models.MachineStatus
	if decodeField(fields, "status", &status) && status.Valid() {
		m.Status = status
	}
	var lastUpdate string
	if decodeField(fields, "last_update", &lastUpdate) {
		if ts, err := models.ParseTimestamp(lastUpdate); err == nil {
			m.LastUpdate = &ts
		}
	}
	return m, true
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}
