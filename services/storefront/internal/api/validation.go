package api

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9]{3,20}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned before any request is sent when an admin
// input is rejected locally.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	IsActive    bool   `json:"isActive"`
}

func (in CategoryInput) Validate() ValidationErrors {
	var errs ValidationErrors
	if len(strings.TrimSpace(in.Name)) < 2 {
		errs = append(errs, ValidationError{Field: "name", Message: "Name must be at least 2 characters"})
	}
	return errs
}

type VariantInput struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"isAvailable"`
}

type MenuItemInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CategoryID  string         `json:"categoryId"`
	Image       string         `json:"image,omitempty"`
	Variants    []VariantInput `json:"variants"`
	IsAvailable bool           `json:"isAvailable"`
	Tags        []string       `json:"tags"`
}

func (in MenuItemInput) Validate() ValidationErrors {
	var errs ValidationErrors
	if len(strings.TrimSpace(in.Name)) < 2 {
		errs = append(errs, ValidationError{Field: "name", Message: "Name must be at least 2 characters"})
	}
	if len(strings.TrimSpace(in.Description)) < 10 {
		errs = append(errs, ValidationError{Field: "description", Message: "Description must be at least 10 characters"})
	}
	if in.CategoryID == "" {
		errs = append(errs, ValidationError{Field: "categoryId", Message: "Category is required"})
	}
	if len(in.Variants) == 0 {
		errs = append(errs, ValidationError{Field: "variants", Message: "At least one variant is required"})
	}

	seen := make(map[string]bool, len(in.Variants))
	for i, v := range in.Variants {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("variants[%d].name", i),
				Message: "Variant name is required",
			})
		} else if seen[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("variants[%d].name", i),
				Message: "Variant names must be unique",
			})
		}
		seen[name] = true

		if v.Price.IsNegative() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("variants[%d].price", i),
				Message: "Price must be positive",
			})
		}
	}
	return errs
}

type CouponInput struct {
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderAmount    decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	UsageLimit        int              `json:"usageLimit"`
	ValidFrom         time.Time        `json:"validFrom"`
	ValidUntil        time.Time        `json:"validUntil"`
	IsActive          bool             `json:"isActive"`
}

func (in CouponInput) Validate() ValidationErrors {
	var errs ValidationErrors
	if !couponCodePattern.MatchString(in.Code) {
		errs = append(errs, ValidationError{Field: "code", Message: "Code must be 3-20 uppercase letters or digits"})
	}
	if len(strings.TrimSpace(in.Description)) < 10 {
		errs = append(errs, ValidationError{Field: "description", Message: "Description must be at least 10 characters"})
	}

	switch in.DiscountType {
	case DiscountPercentage:
		if in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, ValidationError{Field: "discountValue", Message: "Percentage discount cannot exceed 100%"})
		}
	case DiscountFixed:
	default:
		errs = append(errs, ValidationError{Field: "discountType", Message: "Discount type must be percentage or fixed"})
	}

	if in.DiscountValue.IsNegative() {
		errs = append(errs, ValidationError{Field: "discountValue", Message: "Discount value must be positive"})
	}
	if in.MinOrderAmount.IsNegative() {
		errs = append(errs, ValidationError{Field: "minOrderAmount", Message: "Minimum order amount must be positive"})
	}
	if in.MaxDiscountAmount != nil && in.MaxDiscountAmount.IsNegative() {
		errs = append(errs, ValidationError{Field: "maxDiscountAmount", Message: "Maximum discount must be positive"})
	}
	if in.UsageLimit < 1 {
		errs = append(errs, ValidationError{Field: "usageLimit", Message: "Usage limit must be at least 1"})
	}
	if !in.ValidUntil.After(in.ValidFrom) {
		errs = append(errs, ValidationError{Field: "validUntil", Message: "Valid until date must be after valid from date"})
	}
	return errs
}
