package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/eodatahub/action-creator/pkg/api/dto"
)

var validate = validator.New()

// BindQuery binds and validates query parameters, writing a 422
// envelope on failure.
func BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		AbortWithError(c, http.StatusUnprocessableEntity, []string{"query"},
			"invalid_query_parameters_error", err.Error())
		return false
	}
	return validateStruct(c, []string{"query"}, obj)
}

// BindJSON binds and validates a JSON body, writing a 422 envelope on
// failure.
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		AbortWithError(c, http.StatusUnprocessableEntity, []string{"body"},
			"invalid_request_body_error", err.Error())
		return false
	}
	return validateStruct(c, []string{"body"}, obj)
}

func validateStruct(c *gin.Context, loc []string, obj any) bool {
	err := validate.Struct(obj)
	if err == nil {
		return true
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		AbortWithError(c, http.StatusUnprocessableEntity, loc, "validation_error", err.Error())
		return false
	}

	envelope := dto.ErrorEnvelope{}
	for _, fe := range fieldErrors {
		envelope.Detail = append(envelope.Detail, dto.ErrorDetail{
			Loc:  append(append([]string{}, loc...), fe.Field()),
			Type: "validation_error",
			Msg:  fe.Error(),
		})
	}
	c.JSON(http.StatusUnprocessableEntity, envelope)
	c.Abort()
	return false
}
