package forecast

import "math"

type job struct {
	start int
	end   int
}

// GetNumberOfJobsAndWorkers divides iterations into batchSize-long jobs and
// caps the worker count at the number of jobs. The last job is truncated to
// iterations.
func GetNumberOfJobsAndWorkers(iterations int, batchSize int, workers int) ([]job, int) {
	if iterations <= 0 || batchSize <= 0 {
		return nil, 0
	}

	nJobs := int(math.Ceil(float64(iterations) / float64(batchSize)))
	nWorkers := min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			start: i * batchSize,
			end:   min((i+1)*batchSize, iterations),
		}
	}

	return jobs, nWorkers
}
