// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"fmt"
	"io"
	"time"
)

// maxListed caps how many failed streams or files the summary prints in full.
const maxListed = 10

func printSummary(w io.Writer, res *runResult) {
	o := res.Outcome
	failed := o.Failed()

	fmt.Fprintf(w, "\n=== Export Summary ===\n")
	fmt.Fprintf(w, "Job ID: %s\n", o.JobID)
	fmt.Fprintf(w, "Report: %s\n", o.Report)
	fmt.Fprintf(w, "Scope batches: %d\n", o.Batches)
	fmt.Fprintf(w, "Streams completed: %d\n", o.Completed())
	fmt.Fprintf(w, "Streams aborted: %d\n", len(failed))
	fmt.Fprintf(w, "Records written: %d\n", o.Records())
	fmt.Fprintf(w, "Duration: %s\n", o.Duration().Round(time.Millisecond))
	if o.Interrupted {
		fmt.Fprintf(w, "Interrupted: yes (remaining scope batches were skipped)\n")
	}

	if res.Artifact != nil {
		fmt.Fprintf(w, "Artifact: %s (%d sheets)\n", res.Artifact.Path, len(res.Artifact.Sheets))
	} else if len(res.Files) > 0 {
		fmt.Fprintf(w, "\nFiles written:\n")
		printList(w, res.Files)
	} else {
		fmt.Fprintf(w, "No rows exported, nothing written\n")
	}

	if len(res.Uploaded) > 0 {
		fmt.Fprintf(w, "\nUploaded to S3:\n")
		printList(w, res.Uploaded)
	}
	if res.UploadErr != nil {
		fmt.Fprintf(w, "S3 upload failed: %v\n", res.UploadErr)
	}

	if len(failed) > 0 {
		lines := make([]string, 0, len(failed))
		for _, s := range failed {
			lines = append(lines, fmt.Sprintf("%s [%s]: %v", s.DataType, s.Scope.Label(), s.Err))
		}
		fmt.Fprintf(w, "\nAborted streams:\n")
		printList(w, lines)
	}
	fmt.Fprintf(w, "=======================\n")
}

// printList prints every item, or the first and last five when there are many.
func printList(w io.Writer, items []string) {
	if len(items) <= maxListed {
		for i, item := range items {
			fmt.Fprintf(w, "  %d. %s\n", i+1, item)
		}
		return
	}
	for i := 0; i < 5; i++ {
		fmt.Fprintf(w, "  %d. %s\n", i+1, items[i])
	}
	fmt.Fprintf(w, "  ... (%d more) ...\n", len(items)-maxListed)
	for i := len(items) - 5; i < len(items); i++ {
		fmt.Fprintf(w, "  %d. %s\n", i+1, items[i])
	}
}
