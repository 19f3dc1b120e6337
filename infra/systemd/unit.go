package systemd

import (
	"fmt"
	"strings"
	"text/template"
)

// Unit content is a pure function of the installation record plus fixed
// paths. Units are regenerated whenever the listening port changes.

// DisplayUnitParams parameterizes the VNC display-server unit.
type DisplayUnitParams struct {
	User    string
	Home    string
	Display int // X display number; TCP port is 5900+Display
}

// BridgeUnitParams parameterizes the WebSocket/TLS bridge unit.
type BridgeUnitParams struct {
	ListenPort int
	TargetPort int
	CertPath   string
	WebRoot    string
}

var displayUnitTmpl = template.Must(template.New("display").Parse(`[Unit]
Description=deskdroid VNC display server on :{{.Display}}
After=network.target

[Service]
Type=forking
User={{.User}}
Environment=HOME={{.Home}}
PIDFile={{.Home}}/.vnc/%H:{{.Display}}.pid
ExecStartPre=-/usr/bin/vncserver -kill :{{.Display}}
ExecStart=/usr/bin/vncserver :{{.Display}} -localhost yes -geometry 1920x1080 -depth 24
ExecStop=/usr/bin/vncserver -kill :{{.Display}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`))

var bridgeUnitTmpl = template.Must(template.New("bridge").Parse(`[Unit]
Description=deskdroid noVNC bridge (wss on port {{.ListenPort}})
After=network.target deskdroid-vnc.service
Requires=deskdroid-vnc.service

[Service]
Type=simple
ExecStart=/usr/bin/websockify --web {{.WebRoot}} --cert {{.CertPath}} {{.ListenPort}} localhost:{{.TargetPort}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`))

// DisplayUnit renders the display-server unit.
func DisplayUnit(p DisplayUnitParams) (string, error) {
	return render(displayUnitTmpl, p)
}

// BridgeUnit renders the bridge unit. WebRoot defaults to the noVNC
// package location.
func BridgeUnit(p BridgeUnitParams) (string, error) {
	if p.WebRoot == "" {
		p.WebRoot = "/usr/share/novnc"
	}
	return render(bridgeUnitTmpl, p)
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s unit: %w", t.Name(), err)
	}
	return sb.String(), nil
}
