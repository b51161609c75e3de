package controllers

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var (
	ErrNoPermission    = &CustomError{"you do not have permission to perform this action"}
	ErrNoActiveSession = &CustomError{"no active session at this table, scan the table QR first"}
	ErrTableOccupied   = &CustomError{"table is not available"}
)
