package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// PlayerProfile tracks the identity of every player the network has seen.
// Profiles are created on first contact and only ever updated when a player
// renames themselves.
type PlayerProfile struct {
	UUID     uuid.UUID
	Username *string
}

// StatValue is a single statistic, either an integer or a float. The two
// kinds are kept apart so increments preserve the numeric type a minigame
// originally stored.
type StatValue struct {
	isFloat  bool
	intVal   int64
	floatVal float64
}

func IntStat(v int64) StatValue {
	return StatValue{intVal: v}
}

func FloatStat(v float64) StatValue {
	return StatValue{isFloat: true, floatVal: v}
}

func (v StatValue) IsFloat() bool {
	return v.isFloat
}

// Float64 widens the value to the single representation returned by stat
// queries.
func (v StatValue) Float64() float64 {
	if v.isFloat {
		return v.floatVal
	}
	return float64(v.intVal)
}

// BSONValue returns the native operand used in $inc updates: int64 for
// integer statistics, float64 for floating ones.
func (v StatValue) BSONValue() any {
	if v.isFloat {
		return v.floatVal
	}
	return v.intVal
}

// StatValueFromRaw converts a stored BSON value into a StatValue. Any type
// other than int32, int64 or double means the document no longer matches
// the schema this backend expects.
func StatValueFromRaw(rv bson.RawValue) (StatValue, error) {
	switch rv.Type {
	case bson.TypeInt32:
		return IntStat(int64(rv.Int32())), nil
	case bson.TypeInt64:
		return IntStat(rv.Int64()), nil
	case bson.TypeDouble:
		return FloatStat(rv.Double()), nil
	default:
		return StatValue{}, fmt.Errorf("statistic has unexpected BSON type %s", rv.Type)
	}
}

func (v StatValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.BSONValue())
}

func (v *StatValue) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("statistic value must be numeric: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*v = IntStat(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("statistic value must be numeric: %w", err)
	}
	*v = FloatStat(f)
	return nil
}

func (v StatValue) String() string {
	return fmt.Sprintf("%v", v.BSONValue())
}

// StatBundle is one batch of statistic deltas for a single namespace,
// covering any number of players and optionally the network-wide counters.
// Bundles are ephemeral input; they are never persisted as such.
type StatBundle struct {
	Namespace string      `json:"namespace"`
	Stats     BundleStats `json:"stats"`
}

type BundleStats struct {
	Players map[uuid.UUID]map[string]StatValue `json:"players"`
	Global  map[string]StatValue               `json:"global,omitempty"`
}

// PlayerStatsResponse maps namespace to statistic name to value, widened
// to float64.
type PlayerStatsResponse map[string]map[string]float64

// CorruptionReport describes a quarantined document. It is handed to the
// notification sink, not persisted.
type CorruptionReport struct {
	Title       string
	Description string
	Fields      map[string]string
}
