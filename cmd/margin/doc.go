// Margin keeps code review threads in sidecar files beside the source tree.
//
// Each source file with comments gets a JSON sidecar under .margin/. Threads
// are anchored to a line range together with hashes of the surrounding code,
// so when the file changes margin can find the code again: by exact content,
// by its neighbouring lines, or by fuzzy similarity. Threads whose code is gone
// are kept and marked orphaned.
//
// Usage:
//
//	margin add main.go --lines 10-12 -m "This leaks the handle"
//	margin list --status open
//	margin reply <thread-id> -m "Fixed in the next commit"
//	margin resolve <thread-id> -d "Closed the handle with defer"
//	margin reconcile              # re-anchor every sidecar
//	margin rename --git           # follow renames from the last commit
//	margin hook install           # do both after every commit
package main
