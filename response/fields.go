package response

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pithecene-io/crossflow/types"
)

// Field aliases observed across service versions. The first present key wins.
var (
	cycleKeys    = []string{"Cycle", "cycle"}
	phaseKeys    = []string{"Phase Sequence", "phase_sequence", "Phase", "phase"}
	queueKeys    = []string{"Queue", "queue", "queue_length"}
	timingKeys   = []string{"Allocated ➡️ Used", "Allocated ➡ Used", "Allocated -> Used", "allocated_used"}
	lossKeys     = []string{"Cycle Loss", "cycle_loss", "Loss"}
	eventKeys    = []string{"Events", "events"}
	arrivalKeys  = []string{"Arrivals", "arrivals"}
	failedKeys   = []string{"Failed", "failed"}
	redTimeKeys  = []string{"RedTime", "red_time"}
	lossWaitKeys = []string{"LossWait", "loss_wait"}
	lossFailKeys = []string{"LossFail", "loss_fail"}
	lossQKeys    = []string{"LossQueue", "loss_queue"}
	starveKeys   = []string{"LossStarve", "loss_starve"}
	wastedKeys   = []string{"WastedGreen", "wasted_green", "Wasted"}
	penaltyKeys  = []string{"WaitPenalty", "wait_penalty"}
)

var (
	integerPattern = regexp.MustCompile(`-?\d+`)
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

type row map[string]any

// normalizeRow converts one raw row. ok is false when the row must be dropped.
func normalizeRow(raw json.RawMessage) (types.LogEntry, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var r row
	if err := dec.Decode(&r); err != nil || r == nil {
		return types.LogEntry{}, false
	}

	cycle, ok := intField(r.lookup(cycleKeys))
	if !ok || cycle < 1 {
		return types.LogEntry{}, false
	}

	phase := strings.TrimSpace(stringField(r.lookup(phaseKeys)))
	if phase == "" {
		return types.LogEntry{}, false
	}

	loss, present := floatField(r.lookup(lossKeys))
	if present && (loss < 0 || math.IsNaN(loss) || math.IsInf(loss, 0)) {
		return types.LogEntry{}, false
	}

	queue, _ := intField(r.lookup(queueKeys))
	if queue < 0 {
		queue = 0
	}

	return types.LogEntry{
		Cycle:               cycle,
		PhaseSequence:       phase,
		QueueLength:         queue,
		TimingAllocatedUsed: stringField(r.lookup(timingKeys)),
		CycleLoss:           loss,
		Events:              stringField(r.lookup(eventKeys)),
		Detail:              r.detail(),
	}, true
}

func (r row) detail() types.Detail {
	arrivals, _ := intField(r.lookup(arrivalKeys))
	failed, _ := intField(r.lookup(failedKeys))
	return types.Detail{
		Arrivals:    arrivals,
		Failed:      failed,
		RedTime:     finite(r.lookup(redTimeKeys)),
		LossWait:    finite(r.lookup(lossWaitKeys)),
		LossFail:    finite(r.lookup(lossFailKeys)),
		LossQueue:   finite(r.lookup(lossQKeys)),
		LossStarve:  finite(r.lookup(starveKeys)),
		WastedGreen: finite(r.lookup(wastedKeys)),
		WaitPenalty: finite(r.lookup(penaltyKeys)),
	}
}

// lookup returns the first non-null value among keys.
func (r row) lookup(keys []string) any {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// intField coerces numbers and decorated strings ("12 🚗") to int.
// Non-integral numbers are truncated.
func intField(v any) (int, bool) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			if n > math.MaxInt || n < math.MinInt {
				return 0, false
			}
			return int(n), true
		}
		f, err := val.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		// float64(math.MaxInt) rounds up to 2^63, which is itself out of range.
		if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
			return 0, false
		}
		return int(f), true
	case string:
		m := integerPattern.FindString(val)
		if m == "" {
			return 0, false
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// floatField coerces a value to float64. present reports whether the field
// carried a usable value; absent fields yield (0, false).
func floatField(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(val)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		m := numberPattern.FindString(s)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// finite is floatField with non-finite values collapsed to zero.
func finite(v any) float64 {
	f, _ := floatField(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func stringField(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
