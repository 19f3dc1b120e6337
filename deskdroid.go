// Package deskdroid holds the shared records of the remote Android
// development desktop: the managed components, their probed states, and
// the lifecycle of the two generated services.
package deskdroid

// Component is one named, independently probeable and installable unit
// of the target environment.
type Component string

const (
	// Required components. The host is "fully installed" when every one
	// of these probes Present.
	Xfce         Component = "xfce"
	TigerVNC     Component = "tigervnc"
	NoVNC        Component = "novnc"
	Java         Component = "java"
	Chrome       Component = "chrome"
	VNCConfig    Component = "vnc-config"
	SSL          Component = "ssl"
	VNCService   Component = "vnc-service"
	NoVNCService Component = "novnc-service"

	// Optional add-ons. Installed on request via the apps menu; never
	// counted against the fully-installed predicate.
	AndroidStudio Component = "android-studio"
	ChineseInput  Component = "chinese-input"
	Clipboard     Component = "clipboard"
	Redroid       Component = "redroid"
)

// Required lists the canonical required set in a stable order.
func Required() []Component {
	return []Component{
		Xfce, TigerVNC, NoVNC, Java, Chrome,
		VNCConfig, SSL, VNCService, NoVNCService,
	}
}

// Optional lists the add-on components in a stable order.
func Optional() []Component {
	return []Component{AndroidStudio, ChineseInput, Clipboard, Redroid}
}

// State is the probed presence of a component. Probing always resolves
// to exactly one of the two states; there is no unknown.
type State uint8

const (
	Missing State = iota
	Present
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of every component's state.
// It is recomputed on demand and never persisted.
type Status map[Component]State

// Complete reports whether every required component is Present.
func (s Status) Complete() bool {
	for _, c := range Required() {
		if s[c] != Present {
			return false
		}
	}
	return true
}

// Empty reports whether no required component is Present, i.e. a fresh host.
func (s Status) Empty() bool {
	for _, c := range Required() {
		if s[c] == Present {
			return false
		}
	}
	return true
}
