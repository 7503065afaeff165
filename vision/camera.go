package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"
)

// Camera is a FrameSource backed by a local capture device.
type Camera struct {
	cap *gocv.VideoCapture
}

// OpenCamera opens a capture device with the backend appropriate for the
// operating system: V4L2 on Linux, DirectShow on Windows, otherwise whatever
// OpenCV selects on its own.
func OpenCamera(index int) (*Camera, error) {
	var cap *gocv.VideoCapture
	var err error

	switch runtime.GOOS {
	case "linux":
		cap, err = gocv.VideoCaptureDeviceWithAPI(index, gocv.VideoCaptureV4L2)
	case "windows":
		cap, err = gocv.VideoCaptureDeviceWithAPI(index, gocv.VideoCaptureDshow)
	default:
		cap, err = gocv.VideoCaptureDevice(index)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open camera device %d: %w", index, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("camera device %d did not open", index)
	}

	return &Camera{cap: cap}, nil
}

// Next reads one frame from the device
func (c *Camera) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		return nil, errors.New("failed to read frame from camera")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert camera frame: %w", err)
	}
	return img, nil
}

func (c *Camera) Close() error {
	return c.cap.Close()
}
