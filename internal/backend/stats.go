package backend

import "github.com/rtctunnel/rtcbackend/pkg/rtc"

// A StatsResponse is the result of GetStats.
type StatsResponse struct {
	Reports []*StatsReport
}

// A StatsReport is one stats object, such as a transport or a candidate pair.
type StatsReport struct {
	ID        string
	Type      string
	Timestamp float64
	Stats     []Statistic
}

// A Statistic is a named value of a report.
type Statistic struct {
	Name  string
	Value string
}

// AddReport appends a new report.
func (res *StatsResponse) AddReport(id, typ string, timestamp float64) *StatsReport {
	report := &StatsReport{ID: id, Type: typ, Timestamp: timestamp}
	res.Reports = append(res.Reports, report)
	return report
}

// Report returns the report with the given id, or nil.
func (res *StatsResponse) Report(id string) *StatsReport {
	for _, report := range res.Reports {
		if report.ID == id {
			return report
		}
	}
	return nil
}

// AddStatistic appends a named value.
func (report *StatsReport) AddStatistic(name, value string) {
	report.Stats = append(report.Stats, Statistic{Name: name, Value: value})
}

// Stat returns the value of the named statistic.
func (report *StatsReport) Stat(name string) (string, bool) {
	for _, s := range report.Stats {
		if s.Name == name {
			return s.Value, true
		}
	}
	return "", false
}

func statsResponseFromEngine(reports []rtc.StatsReport) *StatsResponse {
	res := new(StatsResponse)
	for _, r := range reports {
		report := res.AddReport(r.ID, r.Type, r.Timestamp)
		for _, v := range r.Values {
			report.AddStatistic(v.Name, v.Value)
		}
	}
	return res
}
