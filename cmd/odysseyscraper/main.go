// Command odysseyscraper scrapes criminal case records from Tyler
// Technologies Odyssey court portals.
package main

func main() {
	Execute()
}
