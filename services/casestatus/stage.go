package casestatus

// Stage is where a session currently is in the case-status flow.
type Stage int

const (
	// StageLanding is a freshly bootstrapped session that has not listed
	// anything yet.
	StageLanding Stage = iota
	StageStatesListed
	StageDistrictsListed
	StageCourtsListed
	StageCaseTypesAndCaptcha
	StageSubmitted
	StageResultExtracted
	StageCaptchaRejected
)

func (s Stage) String() string {
	switch s {
	case StageLanding:
		return "landing"
	case StageStatesListed:
		return "states_listed"
	case StageDistrictsListed:
		return "districts_listed"
	case StageCourtsListed:
		return "courts_listed"
	case StageCaseTypesAndCaptcha:
		return "case_types_and_captcha"
	case StageSubmitted:
		return "submitted"
	case StageResultExtracted:
		return "result_extracted"
	case StageCaptchaRejected:
		return "captcha_rejected"
	default:
		return "unknown"
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
