package marketplace

import "errors"

// Kind classifies engine errors into the four caller-facing categories so the
// transport layer can map them without matching individual sentinels.
type Kind uint8

const (
	// KindUnknown marks errors that did not originate from engine validation.
	KindUnknown Kind = iota
	// KindValidation covers malformed input; the caller can correct and retry.
	KindValidation
	// KindNotFound covers references to listings or grants that do not exist.
	KindNotFound
	// KindStateConflict covers operations a listing's current state forbids.
	KindStateConflict
	// KindAuthorization covers creator-only operations attempted by others.
	KindAuthorization
)

// Error is a classified engine error. All sentinels below are of this type;
// errors.Is comparisons against them work as usual.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind reports the error's category.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

var (
	errNilState = errors.New("marketplace engine: state not configured")

	ErrEmptyName          = newError(KindValidation, "marketplace engine: listing name required")
	ErrNameTooLong        = newError(KindValidation, "marketplace engine: listing name too long")
	ErrDescriptionTooLong = newError(KindValidation, "marketplace engine: listing description too long")
	ErrCategoryTooLong    = newError(KindValidation, "marketplace engine: listing category too long")
	ErrInvalidPrice       = newError(KindValidation, "marketplace engine: price must be positive")
	ErrZeroStake          = newError(KindValidation, "marketplace engine: stake amount must be positive")
	ErrListingNotFound    = newError(KindNotFound, "marketplace engine: listing not found")
	ErrGrantNotFound      = newError(KindNotFound, "marketplace engine: access grant not found")
	ErrListingInactive    = newError(KindStateConflict, "marketplace engine: listing is inactive")
	ErrNotCreator         = newError(KindAuthorization, "marketplace engine: caller is not the listing creator")
)

// KindOf extracts the category from an engine error, or KindUnknown for
// errors that did not come from validation (state backend failures and the
// like).
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}
