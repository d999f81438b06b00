package main

// TODO:
// - APM/Tracing
// - CSRF
func main() {
	startWithDig()
}
