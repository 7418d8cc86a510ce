package main

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Safaricom MSISDNs: 2547XXXXXXXX / 2541XXXXXXXX, with or without the
// country code, optionally prefixed with + or a leading 0.
var msisdnPattern = regexp.MustCompile(`^(?:\+?254|0)?[17]\d{8}$`)

var msisdnValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	phone, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return msisdnPattern.MatchString(phone)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("msisdn", msisdnValidatorFunc)
	}
}
