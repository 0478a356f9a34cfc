package ecourts

// DefaultBaseURL is the landing page of the case-status portal, it is also
// the base that relative document references are resolved against.
const DefaultBaseURL = "https://services.ecourts.gov.in/ecourtindia_v6/"

// Controls of the case-status flow, in the order they are used.
const (
	SelCaseStatusLink = "a[href*='casestatus/index']"

	SelState        = "#sess_state_code"
	SelDistrict     = "#sess_dist_code"
	SelCourtComplex = "#court_complex_code"
	SelCaseNoTab    = "#casenumber-tabMenu"
	SelCaseType     = "#case_type"
	SelCaptchaImage = "#captcha_image"

	SelCaseNumber  = "#search_case_no"
	SelCaseYear    = "#rgyear"
	SelCaptchaText = "#case_captcha_code"

	SelCaseLinks   = "a.someclass"
	SelDetail      = "#CScaseNumber"
	SelPdfTriggers = "a[onclick*='displayPdf']"
	SelOrderModal  = "#modal_order_body"
)

// SubmitScript is the portal's own client side submit routine for the
// case number form.
const SubmitScript = "submitCaseNo();"

// Markup of the case detail view.
const (
	selCourtHeading   = "h2#chHeading"
	selCaseDetails    = "table.case_details_table"
	selCaseStatus     = "table.case_status_table"
	selPetitioners    = "table.Petitioner_Advocate_table"
	selRespondents    = "table.Respondent_Advocate_table"
	selActs           = "table.acts_table"
	selProcesses      = "table#process"
	selOrders         = "table.order_table"
	selCaptchaImgOnly = "img#captcha_image"

	nextHearingLabel = "Next Hearing Date"
)
