package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

type timestampFormat struct {
	re     *regexp.Regexp
	layout string
}

// Current Rocoto format first, then the legacy ISO and syslog-style ones.
var timestampFormats = []timestampFormat{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`), "2006-01-02T15:04:05"},
	{regexp.MustCompile(`[A-Z][a-z]{2} \d{2} \d{2}:\d{2}:\d{2} \d{4}`), "Jan 02 15:04:05 2006"},
}

var (
	taskPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\btask=([\w.-]+)`),
		regexp.MustCompile(`\bTask ([\w.-]+),`),
		regexp.MustCompile(`\bSubmission of ([\w.-]+)`),
		regexp.MustCompile(`(?i)\b(?:TASK|JOB)\s+NAME[:= ]\s*([\w.-]+)`),
	}
	cyclePattern    = regexp.MustCompile(`(?i)\bcycle[=: ]\s*(\d+)`)
	jobIDPattern    = regexp.MustCompile(`(?i)\bjobid[=: ]\s*(\d+)`)
	exitPattern     = regexp.MustCompile(`(?i)\bexit(?: status| code)?\s*[:=]\s*(-?\d+)`)
	statePattern    = regexp.MustCompile(`\bin state ([A-Z]+)`)
	submitPattern   = regexp.MustCompile(`(?i)\bsubmission of [\w.-]+ succeeded`)
	keywordPattern  = regexp.MustCompile(`(?i)\b(submitted|queued|held|running|succeeded|success|completed|failed|failure|dead|lost|expired)\b`)
	legacyFailToken = regexp.MustCompile(`\bFAIL(?:ED|URE)?\b`)
)

// ParseLogLine parses one complete log line. lineNo is 1-based and recorded
// as-is. The line never causes an error; unrecognised content becomes an
// INFO entry whose message is the raw text.
func ParseLogLine(line string, lineNo int) core.LogEntry {
	line = strings.TrimRight(line, "\r\n")
	entry := core.LogEntry{
		Level:      core.LogLevelInfo,
		Raw:        line,
		LineNumber: lineNo,
	}

	message := line
	for _, f := range timestampFormats {
		loc := f.re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if ts, err := time.Parse(f.layout, line[loc[0]:loc[1]]); err == nil {
			entry.Timestamp = &ts
		}
		message = line[:loc[0]] + line[loc[1]:]
		break
	}
	entry.Message = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(message), ":-|"))

	for _, re := range taskPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			entry.TaskID = m[1]
			break
		}
	}
	if m := cyclePattern.FindStringSubmatch(line); m != nil {
		entry.Cycle = m[1]
	}
	if m := jobIDPattern.FindStringSubmatch(line); m != nil {
		entry.JobID = m[1]
	}
	if m := exitPattern.FindStringSubmatch(line); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			entry.ExitCode = &code
		}
	}
	entry.Status = detectStatus(line)
	entry.Level = detectLevel(line, entry.Status)
	return entry
}

func detectStatus(line string) core.TaskStatus {
	if m := statePattern.FindStringSubmatch(line); m != nil {
		return core.ParseTaskStatus(m[1])
	}
	// A successful submission means the job is queued, not done.
	if submitPattern.MatchString(line) {
		return core.TaskStatusPending
	}
	if m := keywordPattern.FindStringSubmatch(line); m != nil {
		switch strings.ToLower(m[1]) {
		case "failure":
			return core.TaskStatusFailed
		default:
			return core.ParseTaskStatus(m[1])
		}
	}
	return ""
}

func detectLevel(line string, status core.TaskStatus) string {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "ERROR"), strings.Contains(upper, "FATAL"), strings.Contains(upper, "CRITICAL"):
		return core.LogLevelError
	case legacyFailToken.MatchString(line):
		return core.LogLevelError
	case strings.Contains(upper, "WARN"):
		return core.LogLevelWarn
	case strings.Contains(upper, "DEBUG"):
		return core.LogLevelDebug
	case status == core.TaskStatusDead:
		return core.LogLevelError
	default:
		return core.LogLevelInfo
	}
}

// ParseLogLines parses complete lines, numbering them from firstLine and
// skipping blank ones.
func ParseLogLines(source string, lines []string, firstLine int) []core.LogEntry {
	entries := make([]core.LogEntry, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, ParseLogLine(line, firstLine+i).WithSource(source))
	}
	return entries
}

// ParseLog parses a whole log buffer. A trailing line without a newline is
// not parsed; it is returned as the pending fragment so the caller can retry
// once the writer finishes it.
func ParseLog(source string, data []byte) ([]core.LogEntry, string) {
	var buf LineBuffer
	lines := buf.Write(data)
	return ParseLogLines(source, lines, 1), buf.Pending()
}
