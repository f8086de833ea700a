package domain

// ProcessingMetadata carries timing and partial-failure information for
// one orchestrator run
type ProcessingMetadata struct {
	ElapsedMs           int64
	ResourcesFetched    int
	ResourcesFailed     int
	EnhancementApplied  bool
	EnhancementDegraded []string
	AgentsDispatched    int
	AssignmentsFailed   int
	RootErrorKind       ErrorKind // set only when Success is false
}

// IntegrationResult is the subsystem's public output contract. Callers
// always receive a well-formed value; partial failures live in Metadata.
type IntegrationResult struct {
	Success          bool
	EnhancedInput    *EnhancedRequest
	FetchedResources map[string]*FetchResult
	Assignments      []*SquadAssignment
	Metadata         ProcessingMetadata
}
