package auth

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// credentials constraints: usernames stay alphanumeric so that pairwise
// session identifiers derived from two usernames cannot collide; bcrypt
// caps passwords at 72 bytes.
type credentials struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Password string `validate:"required,min=8,max=72"`
}

func validateCredentials(username, password string) error {
	return validate.Struct(credentials{Username: username, Password: password})
}
