package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type PostMessageCommand struct {
	Author  string `validate:"required,max=64"`
	Content string `validate:"required"`
}

type ListMessagesCommand struct {
	Limit  int `validate:"gte=1,lte=100"`
	Offset int `validate:"gte=0"`
}

type SearchMessagesCommand struct {
	Query string `validate:"required"`
	Limit int    `validate:"gte=1,lte=100"`
}

// ValidateCommand applies the struct tags of any command above.
// Length limits on the content itself are configuration-driven and
// enforced by the service, not here.
func ValidateCommand(cmd any) error {
	return validate.Struct(cmd)
}
