package response

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response общий конверт служебных ответов (health)
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func SuccessResponse(data interface{}) Response {
	return Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

// UnavailableResponse перечисляет упавшие зависимости и их ошибки
func UnavailableResponse(failed map[string]string) Response {
	return Response{
		Status:  StatusError,
		Data:    failed,
		Message: "dependencies unavailable",
	}
}

func ErrorResponseWithDetails(err, details string) ErrorResponse {
	return ErrorResponse{
		Status:  StatusError,
		Error:   err,
		Details: details,
	}
}
