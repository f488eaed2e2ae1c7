// Command saveup tracks a single savings goal from the terminal and serves
// the web dashboard.
package main

func main() {
	Execute()
}
