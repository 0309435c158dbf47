package auth

import (
	"github.com/rs/zerolog"
)

// NoticeLevel is the severity of a user facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Reason records why a session ended.
type Reason string

const (
	ReasonUser         Reason = "user"         // Explicit logout
	ReasonExpired      Reason = "expired"      // Token reached its exp claim
	ReasonInvalid      Reason = "invalid"      // Token could not be decoded or carried no role
	ReasonUnauthorized Reason = "unauthorized" // Backend rejected the token with 401
	ReasonRemote       Reason = "remote"       // Another tab logged out
)

const (
	MsgSessionExpired = "Your session has expired. Please log in again."
	MsgRemoteLogout   = "You have been logged out from another window."
	MsgLoggedOut      = "Logged out."
)

// Notice returns the level and text shown to the user when a session ends
// for the given reason.
func (r Reason) Notice() (NoticeLevel, string) {
	switch r {
	case ReasonUser:
		return NoticeInfo, MsgLoggedOut
	case ReasonRemote:
		return NoticeInfo, MsgRemoteLogout
	default:
		return NoticeError, MsgSessionExpired
	}
}

// Notifier shows transient notices to the user.
type Notifier interface {
	Notify(level NoticeLevel, msg string)
}

// Navigator moves the user to the login screen.
type Navigator interface {
	RedirectToLogin()
}

type NotifierFunc func(level NoticeLevel, msg string)

func (f NotifierFunc) Notify(level NoticeLevel, msg string) {
	f(level, msg)
}

type NavigatorFunc func()

func (f NavigatorFunc) RedirectToLogin() {
	f()
}

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(level NoticeLevel, msg string) {
	var ev *zerolog.Event
	switch level {
	case NoticeError:
		ev = n.Logger.Error()
	case NoticeWarning:
		ev = n.Logger.Warn()
	default:
		ev = n.Logger.Info()
	}
	ev.Str("notice", string(level)).Msg(msg)
}

type noopNavigator struct{}

func (noopNavigator) RedirectToLogin() {}
