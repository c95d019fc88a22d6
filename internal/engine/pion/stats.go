package pion

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/rtctunnel/rtcbackend/pkg/rtc"
)

// translateStats flattens each pion stats entry into name/value pairs. Reports
// are sorted by id and values by name.
func translateStats(report webrtc.StatsReport) []rtc.StatsReport {
	ids := make([]string, 0, len(report))
	for id := range report {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]rtc.StatsReport, 0, len(ids))
	for _, id := range ids {
		r, err := flattenStats(id, report[id])
		if err != nil {
			log.Debug().Err(err).Str("id", id).Msg("skipping stats entry")
			continue
		}
		out = append(out, r)
	}
	return out
}

func flattenStats(id string, stats webrtc.Stats) (rtc.StatsReport, error) {
	bs, err := json.Marshal(stats)
	if err != nil {
		return rtc.StatsReport{}, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(bs, &fields); err != nil {
		return rtc.StatsReport{}, err
	}

	r := rtc.StatsReport{ID: id}
	if typ, ok := fields["type"].(string); ok {
		r.Type = typ
	}
	if ts, ok := fields["timestamp"].(float64); ok {
		r.Timestamp = ts
	}
	delete(fields, "id")
	delete(fields, "type")
	delete(fields, "timestamp")

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Values = append(r.Values, rtc.StatsValue{Name: name, Value: formatStatValue(fields[name])})
	}
	return r, nil
}

func formatStatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	bs, _ := json.Marshal(v)
	return string(bs)
}
