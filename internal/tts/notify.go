package tts

import (
	"context"
	"errors"
	"fmt"
)

// NotifyKind groups terminal failures by what the user should do next.
type NotifyKind int

const (
	// NotifyNone means there is nothing to report
	NotifyNone NotifyKind = iota

	// NotifyInput asks the user to check their input
	NotifyInput

	// NotifyExport reports that automatic download failed and a manual option was offered
	NotifyExport

	// NotifySpeech reports that the voice engine failed
	NotifySpeech

	// NotifyGeneric covers anything else
	NotifyGeneric
)

// String returns the string representation of the kind
func (k NotifyKind) String() string {
	switch k {
	case NotifyNone:
		return "none"
	case NotifyInput:
		return "input"
	case NotifyExport:
		return "export"
	case NotifySpeech:
		return "speech"
	default:
		return "error"
	}
}

// Notification is a human-readable message for a terminal failure.
type Notification struct {
	Kind    NotifyKind
	Title   string
	Message string
	// ManualURL is set when the export fell back to a manual download link
	ManualURL string
}

// String renders the notification on one line.
func (n Notification) String() string {
	if n.Kind == NotifyNone {
		return ""
	}
	if n.Message == "" {
		return n.Title
	}
	return n.Title + ": " + n.Message
}

// Notify maps an error returned by a speak or export call to a notification.
func Notify(err error) Notification {
	if err == nil {
		return Notification{Kind: NotifyNone}
	}

	if errors.Is(err, context.Canceled) {
		return Notification{Kind: NotifyGeneric, Title: "Canceled"}
	}

	var te *TTSError
	if !errors.As(err, &te) {
		return Notification{Kind: NotifyGeneric, Title: "Something went wrong", Message: err.Error()}
	}

	switch te.Code {
	case ErrorCodeInvalidInput, ErrorCodeTextTooLong:
		return Notification{
			Kind:    NotifyInput,
			Title:   "Check your input",
			Message: te.Message,
		}

	case ErrorCodeExportExhausted:
		n := Notification{
			Kind:  NotifyExport,
			Title: "Automatic download failed",
		}
		if u, ok := te.Context["manual_url"].(string); ok && u != "" {
			n.ManualURL = u
			if opened, _ := te.Context["manual_opened"].(bool); opened {
				n.Message = "the audio was opened in your browser, save it from there"
			} else {
				n.Message = fmt.Sprintf("open this link and save the audio manually: %s", u)
			}
		} else {
			n.Message = te.Message
		}
		return n

	case ErrorCodeEngineFailure, ErrorCodeEngineUnavailable:
		msg := te.Message
		if te.Cause != nil {
			msg = fmt.Sprintf("%s: %v", te.Message, te.Cause)
		}
		return Notification{
			Kind:    NotifySpeech,
			Title:   "Speech failed",
			Message: msg,
		}
	}

	return Notification{Kind: NotifyGeneric, Title: "Something went wrong", Message: te.Error()}
}
