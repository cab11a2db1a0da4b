package system

type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

// TakeConsole puts the VT into graphics mode and hides the cursor while the
// splash screen owns the display. The returned func undoes both.
// Failures are logged and otherwise ignored.
func TakeConsole(l Logger) (restore func()) {
	logResult(l, "set KD_GRAPHICS", SetGraphicsMode())
	logResult(l, "hide cursor", HideCursor())
	return func() {
		logResult(l, "show cursor", ShowCursor())
		logResult(l, "set KD_TEXT", RestoreTextMode())
	}
}

func logResult(l Logger, op string, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.Errorf("tty", "%s failed: %v", op, err)
		return
	}
	l.Infof("tty", "%s ok", op)
}
