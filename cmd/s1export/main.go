// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// s1export pulls paginated data out of a management console and writes it as
// one spreadsheet (or a set of delimited files) per export job.
//
// Usage:
//
//	# Export exclusions across every scope the token can see
//	s1export exclusions --console-url https://console.example.com --api-token $TOKEN
//
//	# Deep Visibility events for two queries, kept as CSV files
//	s1export dv --query-ids q1,q2 --consolidate=false
//
//	# Activities for January, repeated every night at 2 AM
//	s1export schedule --cron "0 2 * * *" activities --from 2024-01-01 --to 2024-01-31
package main

func main() {
	Execute()
}
