package repository

const (
	createJobQuery = `INSERT INTO jobs (status, upscale, progress_stage, progress_percent, progress_message)
					VALUES ($1, $2, $1, 0, $3) RETURNING *`
	createSceneQuery = `INSERT INTO scenes (job_id, scene_order, prompt, duration_seconds, trim_start, trim_end,
					transition_type, transition_duration)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING *`
	getJobByIDQuery = `SELECT job_id, status, active_prediction_id, upscale, progress_stage, progress_percent,
					progress_message, error, final_artifact_url, created_at, started_at, completed_at
					FROM jobs WHERE job_id = $1`
	getJobByPredictionIDQuery = `SELECT job_id, status, active_prediction_id, upscale, progress_stage, progress_percent,
					progress_message, error, final_artifact_url, created_at, started_at, completed_at
					FROM jobs WHERE active_prediction_id = $1`
	getScenesByJobIDQuery = `SELECT scene_id, job_id, scene_order, prompt, duration_seconds, trim_start, trim_end,
					transition_type, transition_duration, output_url, prediction_id, upscaled
					FROM scenes WHERE job_id = $1 ORDER BY scene_order`
	getPollableJobsQuery = `SELECT job_id, status, active_prediction_id, upscale, progress_stage, progress_percent,
					progress_message, error, final_artifact_url, created_at, started_at, completed_at
					FROM jobs WHERE status IN ('running', 'upscaling') AND active_prediction_id IS NOT NULL
					ORDER BY created_at`
	getTotalJobsQuery = `SELECT COUNT(job_id) FROM jobs`
	listJobsQuery     = `SELECT job_id, status, active_prediction_id, upscale, progress_stage, progress_percent,
					progress_message, error, final_artifact_url, created_at, started_at, completed_at
					FROM jobs ORDER BY created_at DESC OFFSET $1 LIMIT $2`
	casStatusQuery = `UPDATE jobs SET status = $3, progress_stage = $3,
					started_at = CASE WHEN $3 = 'running' AND started_at IS NULL THEN now() ELSE started_at END
					WHERE job_id = $1 AND status = $2`
	completeJobQuery = `UPDATE jobs SET status = 'completed', final_artifact_url = $3, active_prediction_id = NULL,
					progress_stage = 'completed', progress_percent = 100, progress_message = 'completed',
					completed_at = now()
					WHERE job_id = $1 AND status = $2`
	failJobQuery = `UPDATE jobs SET status = 'failed', error = $2, active_prediction_id = NULL,
					progress_stage = 'failed', progress_message = $2, completed_at = now()
					WHERE job_id = $1 AND status NOT IN ('completed', 'failed')`
	setActivePredictionQuery      = `UPDATE jobs SET active_prediction_id = $2 WHERE job_id = $1`
	setScenePredictionQuery       = `UPDATE scenes SET prediction_id = $2 WHERE scene_id = $1`
	setSceneOutputQuery           = `UPDATE scenes SET output_url = $2 WHERE scene_id = $1 AND output_url IS NULL`
	setSceneUpscaledQuery         = `UPDATE scenes SET output_url = $2, upscaled = TRUE WHERE scene_id = $1 AND upscaled = FALSE`
	updateProgressQuery           = `UPDATE jobs SET progress_stage = $2, progress_percent = $3, progress_message = $4
					WHERE job_id = $1 AND status NOT IN ('completed', 'failed')`
)
