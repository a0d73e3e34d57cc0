package handlers

import (
	"net/http"

	"trails/pkg/common"
	pkgerrors "trails/pkg/errors"
)

// respondError maps application errors onto the standard response envelope.
// AppErrors carry their own HTTP status and code; anything else is a 500.
func respondError(w http.ResponseWriter, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		common.RespondError(w, http.StatusInternalServerError, common.StandardErrorCodes.InternalError, err.Error())
		return
	}

	code := appErr.Code
	if code == "" {
		switch appErr.Type {
		case pkgerrors.ErrorTypeValidation:
			code = common.StandardErrorCodes.ValidationError
		case pkgerrors.ErrorTypeNotFound:
			code = common.StandardErrorCodes.NotFound
		case pkgerrors.ErrorTypeConflict:
			code = common.StandardErrorCodes.Conflict
		case pkgerrors.ErrorTypeVisionUnsupported:
			code = common.StandardErrorCodes.VisionUnsupported
		case pkgerrors.ErrorTypeProvider:
			code = common.StandardErrorCodes.ProviderError
		case pkgerrors.ErrorTypeAllModelsFailed:
			code = common.StandardErrorCodes.AllModelsFailed
		case pkgerrors.ErrorTypeUnavailable:
			code = common.StandardErrorCodes.ServiceUnavailable
		default:
			code = common.StandardErrorCodes.InternalError
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if len(appErr.Details) > 0 {
		common.RespondErrorWithDetails(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.RespondError(w, status, code, appErr.Message)
}
