package server

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	yellow     = "\033[33m"
	gray       = "\033[90m" // Bright black, often appears as gray
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    green,
	"POST":   blue,
	"DELETE": yellow,
}

func colourMethod(method string) string {
	colour, ok := methodColors[method]
	if !ok {
		colour = gray
	}
	return colour + method + resetColor
}
