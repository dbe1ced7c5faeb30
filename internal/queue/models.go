package queue

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusFiltered   Status = "filtered"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusSuccess,
	StatusFailed,
	StatusSkipped,
	StatusFiltered,
}

var statusSet = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		m[status] = struct{}{}
	}
	return m
}()

// AdvancedMessage prefixes the result message of an item that completed by
// handing its next sub-stage to a spawned child.
const AdvancedMessage = "advanced to next stage"

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ActiveStatuses are the non-terminal statuses.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusProcessing}
}

// ParseStatus converts a string to a Status, returning false when unknown.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status is write-once.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped, StatusFiltered:
		return true
	default:
		return false
	}
}

// ItemType selects the stage sequence an item runs through.
type ItemType string

const (
	ItemTypeListing         ItemType = "listing"
	ItemTypeOrganization    ItemType = "organization"
	ItemTypeSourceDiscovery ItemType = "source_discovery"
)

// ItemTypes returns every known item type.
func ItemTypes() []ItemType {
	return []ItemType{ItemTypeListing, ItemTypeOrganization, ItemTypeSourceDiscovery}
}

// ParseItemType converts a string to an ItemType, returning false when unknown.
func ParseItemType(value string) (ItemType, bool) {
	t := ItemType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stageSequences[t]
	return t, ok
}

// SubStage names one step of an item type's pipeline.
type SubStage string

const (
	StageScrape   SubStage = "scrape"
	StageFilter   SubStage = "filter"
	StageAnalyze  SubStage = "analyze"
	StageSave     SubStage = "save"
	StageFetch    SubStage = "fetch"
	StageExtract  SubStage = "extract"
	StageDetect   SubStage = "detect"
	StageValidate SubStage = "validate"
	StageCreate   SubStage = "create"
)

var stageSequences = map[ItemType][]SubStage{
	ItemTypeListing:         {StageScrape, StageFilter, StageAnalyze, StageSave},
	ItemTypeOrganization:    {StageFetch, StageExtract, StageAnalyze, StageSave},
	ItemTypeSourceDiscovery: {StageDetect, StageValidate, StageCreate},
}

// Stages returns the ordered sub-stages for an item type.
func Stages(t ItemType) []SubStage {
	return slices.Clone(stageSequences[t])
}

// FirstStage returns the entry sub-stage for an item type.
func FirstStage(t ItemType) SubStage {
	if seq := stageSequences[t]; len(seq) > 0 {
		return seq[0]
	}
	return ""
}

// StageIndex returns the position of s in t's sequence, or -1.
func StageIndex(t ItemType, s SubStage) int {
	return slices.Index(stageSequences[t], s)
}

// NextStage returns the sub-stage after s, or false when s is the last one.
func NextStage(t ItemType, s SubStage) (SubStage, bool) {
	seq := stageSequences[t]
	idx := slices.Index(seq, s)
	if idx < 0 || idx+1 >= len(seq) {
		return "", false
	}
	return seq[idx+1], true
}

// HasStage reports whether s belongs to t's sequence.
func (t ItemType) HasStage(s SubStage) bool {
	return StageIndex(t, s) >= 0
}

// Ancestor is one entry of an item's ancestry chain.
type Ancestor struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Type     ItemType `json:"type"`
	SubStage SubStage `json:"sub_stage,omitempty"`
}

// State is an item's private pipeline-state store. Values are kept as raw
// JSON so stages can persist their own typed results.
type State map[string]json.RawMessage

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Decode unmarshals key into dst, returning false when the key is absent.
func (s State) Decode(key string, dst any) (bool, error) {
	raw, ok := s[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode pipeline state %q: %w", key, err)
	}
	return true, nil
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = slices.Clone(v)
	}
	return out
}

// Keys returns the state keys in sorted order.
func (s State) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Item is a single unit of pipeline work.
type Item struct {
	ID               string
	Type             ItemType
	SubStage         SubStage
	Status           Status
	URL              string
	OrganizationName string
	OrganizationID   string
	SourceID         string
	TrackingID       string
	Ancestry         []Ancestor
	SpawnDepth       int
	MaxSpawnDepth    int
	RetryCount       int
	MaxRetries       int
	PipelineState    State
	ResultMessage    string
	ErrorDetails     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProcessedAt      *time.Time
	CompletedAt      *time.Time
	LastHeartbeat    *time.Time
}

// IsTerminal reports whether the item reached a write-once status.
func (i *Item) IsTerminal() bool {
	return i != nil && i.Status.IsTerminal()
}

// SetState stores v under key in the item's pipeline state.
func (i *Item) SetState(key string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode pipeline state %q: %w", key, err)
	}
	if i.PipelineState == nil {
		i.PipelineState = State{}
	}
	i.PipelineState[key] = encoded
	return nil
}

// AsAncestor converts the item into an ancestry entry.
func (i *Item) AsAncestor() Ancestor {
	return Ancestor{ID: i.ID, URL: i.URL, Type: i.Type, SubStage: i.SubStage}
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	out.Ancestry = slices.Clone(i.Ancestry)
	out.PipelineState = i.PipelineState.Clone()
	out.ProcessedAt = cloneTime(i.ProcessedAt)
	out.CompletedAt = cloneTime(i.CompletedAt)
	out.LastHeartbeat = cloneTime(i.LastHeartbeat)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Validate checks the structural invariants every persisted item satisfies.
func (i *Item) Validate() error {
	if _, ok := stageSequences[i.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, i.Type)
	}
	if i.SubStage != "" && !i.Type.HasStage(i.SubStage) {
		return fmt.Errorf("%w: sub-stage %q not valid for %s", ErrInvalidItem, i.SubStage, i.Type)
	}
	if _, ok := statusSet[i.Status]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidItem, i.Status)
	}
	if strings.TrimSpace(i.TrackingID) == "" {
		return fmt.Errorf("%w: tracking id required", ErrInvalidItem)
	}
	if len(i.Ancestry) != i.SpawnDepth {
		return fmt.Errorf("%w: ancestry length %d does not match spawn depth %d", ErrInvalidItem, len(i.Ancestry), i.SpawnDepth)
	}
	if i.MaxSpawnDepth < 1 {
		return fmt.Errorf("%w: max spawn depth must be positive", ErrInvalidItem)
	}
	if i.MaxRetries < 0 || i.RetryCount < 0 {
		return fmt.Errorf("%w: retry counters must not be negative", ErrInvalidItem)
	}
	return nil
}

// RootSpec describes a new lineage root.
type RootSpec struct {
	Type             ItemType
	URL              string
	SubStage         SubStage
	OrganizationName string
	SourceID         string
	MaxSpawnDepth    int
	MaxRetries       int
	State            State
}

// NewRoot builds a pending root item with a fresh tracking ID and an empty
// ancestry. The caller persists it with Store.Create.
func NewRoot(root RootSpec) *Item {
	state := root.State.Clone()
	return &Item{
		ID:               uuid.NewString(),
		Type:             root.Type,
		SubStage:         root.SubStage,
		Status:           StatusPending,
		URL:              strings.TrimSpace(root.URL),
		OrganizationName: strings.TrimSpace(root.OrganizationName),
		SourceID:         root.SourceID,
		TrackingID:       uuid.NewString(),
		Ancestry:         []Ancestor{},
		SpawnDepth:       0,
		MaxSpawnDepth:    root.MaxSpawnDepth,
		MaxRetries:       root.MaxRetries,
		PipelineState:    state,
	}
}
