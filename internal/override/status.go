package override

// Status is the outcome of validating one tag, or the aggregate outcome of a
// module.
type Status int

const (
	OK Status = iota
	FileChanged
	VersionUnrecognized
	InvalidFormat
	DSCINFNotFound
	TargetINFNotFound
)

var statusNames = [...]string{
	OK:                  "OK",
	FileChanged:         "FILE_CHANGED",
	VersionUnrecognized: "VERSION_UNRECOGNIZED",
	InvalidFormat:       "INVALID_FORMAT",
	DSCINFNotFound:      "DSC_INF_NOT_FOUND",
	TargetINFNotFound:   "TARGET_INF_NOT_FOUND",
}

var reportNames = [...]string{
	OK:                  "SUCCESS",
	FileChanged:         "MISMATCH",
	VersionUnrecognized: "INVALID_VERSION",
	InvalidFormat:       "INVALID_FORMAT",
	DSCINFNotFound:      "FILE_NOT_FOUND",
	TargetINFNotFound:   "FILE_NOT_FOUND",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// ReportString is the word used for s in OVERRIDELOG.TXT.
func (s Status) ReportString() string {
	if s < 0 || int(s) >= len(reportNames) {
		return "UNKNOWN"
	}
	return reportNames[s]
}
