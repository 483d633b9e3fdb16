package telemetry

import "sync"

// Level is the severity a report was made with.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelBroken
	LevelCount
)

// Report is a single call made against a Recorder.
type Report struct {
	Level  Level
	Id     string
	Params []any
	Count  int64
}

// Recorder implements API by keeping every report in memory, it is meant for tests that
// assert on what was (or was not) reported.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) push(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.push(Report{Level: LevelBroken, Id: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.push(Report{Level: LevelWarning, Id: id, Params: params})
}

func (r *Recorder) ReportInfo(id string, params ...any) {
	r.push(Report{Level: LevelInfo, Id: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.push(Report{Level: LevelDebug, Id: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.push(Report{Level: LevelCount, Id: id, Count: count})
}

// Reports returns a copy of the reports recorded so far.
func (r *Recorder) Reports() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Filter returns the recorded reports of the given level.
func (r *Recorder) Filter(level Level) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Level == level {
			out = append(out, report)
		}
	}
	return out
}
