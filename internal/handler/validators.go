package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/evlink/warranty-notify/internal/model"
)

// notifchannel validates a single delivery channel name in request payloads,
// so malformed channels are rejected at bind time with the rest of the field
// errors instead of surfacing later from the service.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notifchannel", func(fl validator.FieldLevel) bool {
			return model.Channel(fl.Field().String()).Valid()
		})
	}
}
