package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE projects (
				id SERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT true,
				version INTEGER NOT NULL DEFAULT 0,
				user_grants JSONB NOT NULL DEFAULT '[]',
				group_grants JSONB NOT NULL DEFAULT '[]',
				proxy_users JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_projects_name ON projects(name);
			CREATE INDEX idx_projects_active ON projects(active);

			CREATE TABLE project_flows (
				project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				definition JSONB NOT NULL,
				locked BOOLEAN NOT NULL DEFAULT false,
				lock_error_message TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (project_id, id)
			);

			CREATE INDEX idx_project_flows_project_id ON project_flows(project_id);

			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				project_id INTEGER NOT NULL,
				flow_id VARCHAR(255) NOT NULL,
				cron_expression VARCHAR(255) NOT NULL,
				next_run_at TIMESTAMP WITH TIME ZONE,
				paused BOOLEAN NOT NULL DEFAULT false,
				submitted_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (project_id, flow_id)
			);

			CREATE INDEX idx_schedules_project_id ON schedules(project_id);
		`,
	}
}
