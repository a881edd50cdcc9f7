package config

type WorkerKeyStruct struct {
	AssignmentCompletionQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AssignmentCompletionQueue: "assignment_completion_queue",
}
