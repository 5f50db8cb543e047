package errors

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// DisplayError writes err to w with colored formatting
func DisplayError(w io.Writer, err error) {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("SNAPCOPIER_NO_COLOR") != "" {
		color.NoColor = true
	}

	copierErr, ok := err.(*CopierError)
	if !ok {
		fmt.Fprintf(w, "%s %v\n", color.RedString("Error:"), err)
		return
	}

	colorFunc := getErrorStyle(copierErr.Type)

	fmt.Fprintf(w, "\n%s %s\n", colorFunc("["+string(copierErr.Type)+"]"), copierErr.Message)

	if copierErr.Cause != "" {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(copierErr.Cause))
	}

	if copierErr.Err != nil {
		fmt.Fprintf(w, "   %s %s\n", color.YellowString("Detail:"), color.HiBlackString(copierErr.Err.Error()))
	}

	if len(copierErr.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range copierErr.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	fmt.Fprintln(w)
}

// getErrorStyle returns the appropriate color function for an error type
func getErrorStyle(errType ErrorType) func(format string, a ...interface{}) string {
	switch errType {
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return color.YellowString
	case ErrorTypeRegistry:
		return color.CyanString
	case ErrorTypeLookup, ErrorTypeAlreadyExists:
		return color.MagentaString
	default:
		return color.RedString
	}
}
