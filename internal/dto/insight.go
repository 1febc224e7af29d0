package dto

// ── AI 洞察 DTO ──

// PredictGPARequest 预测 GPA 请求，为空时使用当前用户
type PredictGPARequest struct {
	StudentID string `json:"student_id" binding:"omitempty,max=128"`
}

// PredictGPAResponse 预测结果
type PredictGPAResponse struct {
	StudentID    string   `json:"student_id"`
	PredictedGPA float64  `json:"predicted_gpa"`
	RiskLevel    string   `json:"risk_level"` // low | medium | high
	Factors      []string `json:"factors,omitempty"`
	Fallback     bool     `json:"fallback"`
}

// StudyAssistantRequest 学习助手请求
type StudyAssistantRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
	Subject  string `json:"subject"  binding:"omitempty,max=100"`
}

// StudyAssistantResponse 学习助手回复
type StudyAssistantResponse struct {
	Answer      string   `json:"answer"`
	Suggestions []string `json:"suggestions,omitempty"`
	Fallback    bool     `json:"fallback"`
}
