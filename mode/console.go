package mode

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/khaledhikmat/fr-attendance/pipeline"
)

var (
	knownColor   = color.New(color.FgGreen, color.Bold)
	unknownColor = color.New(color.FgRed)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgCyan)
)

type consoleObserver struct {
	out io.Writer
}

// Console prints every recognition to out: known faces in green, unknown in
// red.
func Console(out io.Writer) pipeline.Observer {
	return &consoleObserver{out: out}
}

func (c *consoleObserver) OnFrame(event pipeline.FrameEvent) {
	headerColor.Fprintf(c.out, "[%s #%d %s] %d face(s)\n",
		event.CameraID, event.Seq, event.CapturedAt.Format("15:04:05.000"), len(event.Faces))

	for _, face := range event.Faces {
		line := unknownColor
		if face.Known() {
			line = knownColor
		}
		line.Fprintf(c.out, "  %-24s", face.Name)

		if face.RollNumber != nil {
			fmt.Fprintf(c.out, " roll=%s", *face.RollNumber)
		}
		if face.Email != nil {
			fmt.Fprintf(c.out, " email=%s", *face.Email)
		}
		fmt.Fprintf(c.out, " similarity=%.2f confidence=%.2f\n", face.Similarity, face.Confidence)
	}
}

func (c *consoleObserver) OnError(err error) {
	errorColor.Fprintf(c.out, "recognition stopped: %v\n", err)
}
