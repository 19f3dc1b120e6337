// Package redroid runs the optional Android-in-container add-on through
// the Docker API. The container exposes adb on a loopback-adjacent port;
// developers connect Android Studio to it from the remote desktop.
package redroid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	ContainerName = "deskdroid-redroid"
	// AdbPort is the host port mapped to the container's adb daemon.
	AdbPort = 5555

	defaultImage = "redroid/redroid:13.0.0-latest"
	binderfsPath = "/dev/binderfs"
)

// Runtime manages the redroid container.
type Runtime struct {
	Docker client.APIClient
	Image  string
}

func (r Runtime) image() string {
	if r.Image != "" {
		return r.Image
	}
	return defaultImage
}

// BinderReady reports whether binderfs is mounted. Redroid needs the
// binder device nodes; without them the container cannot boot, so this
// is checked up front instead of retrying a failing start.
func BinderReady() bool {
	_, err := os.Stat(binderfsPath)
	return err == nil
}

// Installed reports whether the container exists, running or not.
// Read-only.
func (r Runtime) Installed(ctx context.Context) bool {
	_, err := r.Docker.ContainerInspect(ctx, ContainerName)
	return err == nil
}

// Up creates and starts the container, pulling the image on first use.
// Re-running against an existing container just ensures it is started.
func (r Runtime) Up(ctx context.Context) error {
	if !BinderReady() {
		return fmt.Errorf("binderfs is not mounted at %s; mount it before installing the Android container", binderfsPath)
	}

	if r.Installed(ctx) {
		if err := r.Docker.ContainerStart(ctx, ContainerName, container.StartOptions{}); err != nil {
			return fmt.Errorf("start existing container: %w", err)
		}
		return nil
	}

	adb := nat.Port(fmt.Sprintf("%d/tcp", AdbPort))
	cfg := &container.Config{
		Image:        r.image(),
		Cmd:          []string{"androidboot.hardware=redroid"},
		ExposedPorts: nat.PortSet{adb: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		Privileged: true,
		PortBindings: nat.PortMap{
			adb: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: fmt.Sprint(AdbPort)}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	_, err := r.Docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, ContainerName)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("create container: %w", err)
		}
		if err := r.pull(ctx); err != nil {
			return err
		}
		if _, err = r.Docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, ContainerName); err != nil {
			return fmt.Errorf("create container after pull: %w", err)
		}
	}

	if err := r.Docker.ContainerStart(ctx, ContainerName, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

// Down stops and removes the container. NotFound is silently ignored so
// uninstall stays idempotent.
func (r Runtime) Down(ctx context.Context) error {
	if err := r.Docker.ContainerStop(ctx, ContainerName, container.StopOptions{}); err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("stop container: %w", err)
		}
	}
	if err := r.Docker.ContainerRemove(ctx, ContainerName, container.RemoveOptions{Force: true}); err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container: %w", err)
		}
	}
	return nil
}

func (r Runtime) pull(ctx context.Context) error {
	slog.Info("Pulling image.", "image", r.image())
	resp, err := r.Docker.ImagePull(ctx, r.image(), image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", r.image(), err)
	}
	defer resp.Close()
	if _, err := io.Copy(io.Discard, resp); err != nil {
		return fmt.Errorf("pull image %s: read response: %w", r.image(), err)
	}
	return nil
}
