// Package service holds the application operations. Every call takes the
// storage handle from its service value and the acting Principal explicitly.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"quizmaster/internal/models"
)

const dateLayout = "2006-01-02"

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID   uint
	Email    string
	FullName string
	IsAdmin  bool
}

func PrincipalFor(u models.User) Principal {
	return Principal{
		UserID:   u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		IsAdmin:  u.IsAdmin,
	}
}

func requireAdmin(p Principal) error {
	if p.UserID == 0 {
		return models.ErrUnauthenticated
	}
	if !p.IsAdmin {
		return models.ErrForbidden
	}
	return nil
}

func requireUser(p Principal) error {
	if p.UserID == 0 {
		return models.ErrUnauthenticated
	}
	if p.IsAdmin {
		return models.ErrForbidden
	}
	return nil
}

// dbErr classifies a storage error. Domain errors pass through untouched.
func dbErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case models.IsDomainError(err):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
	}
}

// ---------- validation ----------

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their form name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(dateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !d.After(time.Now())
	})
	return v
}

// validateForm runs struct validation and converts failures to a ValidationError.
func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &models.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := ve.Fields[fe.Field()]; !seen {
			ve.Fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "eqfield":
		return "Passwords must match."
	case "oneof":
		return "Not a valid choice."
	case "datetime":
		return "Use the YYYY-MM-DD format."
	case "notfuture":
		return "Date of birth cannot be in the future."
	default:
		return "Invalid value."
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// ---------- percentages ----------

// percentPlaces is the precision every displayed percentage is rounded to.
// Values are rounded once, here, and printed as is.
const percentPlaces = 1

// Percent is score/total*100 at display precision.
func Percent(score, total int) float64 {
	return percent(int64(score), int64(total), percentPlaces)
}

// percent returns score/total*100 rounded to places, or 0 when total is 0.
func percent(score, total int64, places int32) float64 {
	if total <= 0 {
		return 0
	}
	v := decimal.NewFromInt(score).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), places+2).
		Round(places)
	f, _ := v.Float64()
	return f
}

// compareFraction orders a/b against c/d without rounding. A zero or
// negative denominator counts as 0%.
func compareFraction(a, b, c, d int64) int {
	if b <= 0 {
		a, b = 0, 1
	}
	if d <= 0 {
		c, d = 0, 1
	}
	l, r := a*d, c*b
	switch {
	case l > r:
		return 1
	case l < r:
		return -1
	}
	return 0
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
