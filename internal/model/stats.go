package model

// RecruiterAnalytics summarizes a recruiter's footprint: their tests and the
// attempts those tests have received. Admins see platform-wide numbers.
type RecruiterAnalytics struct {
	TotalTests        int `json:"total_tests"`
	ActiveTests       int `json:"active_tests"`
	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
}

// AdminStats is the platform-wide entity census for the admin dashboard.
type AdminStats struct {
	TotalUsers     int `json:"total_users"`
	Admins         int `json:"admins"`
	Recruiters     int `json:"recruiters"`
	Candidates     int `json:"candidates"`
	TotalTests     int `json:"total_tests"`
	TotalQuestions int `json:"total_questions"`
	TotalSessions  int `json:"total_sessions"`
}
