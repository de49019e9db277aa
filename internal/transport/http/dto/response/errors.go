package response

var (
	ErrInvalidProjectID = ErrorResponse{
		Status: StatusError,
		Error:  "Invalid project ID",
	}

	ErrNothingToUpdate = ErrorResponse{
		Status: StatusError,
		Error:  "No fields to update",
	}

	ErrProjectNotFound = ErrorResponse{
		Status: StatusError,
		Error:  "Project not found",
	}

	ErrUnauthorized = ErrorResponse{
		Status: StatusError,
		Error:  "Authentication required",
	}

	ErrForbidden = ErrorResponse{
		Status: StatusError,
		Error:  "Admin access required",
	}
)
