// Command ralph drives an external agent CLI through the verified IMPL,
// TEST, GATES, REVIEW loop, task by task, and reports a stable exit code.
package main

func main() {
	Execute()
}
