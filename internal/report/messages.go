package report

import (
	"errors"

	"raport/internal/reportclient"
)

// User-facing messages, one per failure class.
const (
	MsgInvalidMonth = "Nieprawidłowy format miesiąca"
	MsgUnauthorized = "Brak autoryzacji, zaloguj się ponownie"
	MsgLoadFailed   = "Wystąpił błąd podczas ładowania danych, spróbuj ponownie"
)

// Message maps a fetch failure to the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, reportclient.ErrUnauthorized):
		return MsgUnauthorized
	case errors.Is(err, reportclient.ErrBadMonth):
		return MsgInvalidMonth
	default:
		return MsgLoadFailed
	}
}
