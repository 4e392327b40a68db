// Package process launches the backend as a child process.
//
// The backend's standard output is an os.Pipe owned by the driver rather
// than exec.Cmd.StdoutPipe, so reaping the process never closes the stream
// under the decode loop. The process is reaped on a dedicated goroutine as
// soon as it starts; Exited reports when that happened.
package process
