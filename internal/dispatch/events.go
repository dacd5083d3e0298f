package dispatch

// Typed convenience wrappers that assemble event data for the common domain
// facts and hand them to Dispatch. Producers that emit shapes not covered
// here can call Dispatch directly.

func (d *Dispatcher) TaskCreated(task, user, project map[string]any) {
	d.Dispatch(EventTaskCreated, map[string]any{
		"task":    task,
		"user":    user,
		"project": project,
	})
}

func (d *Dispatcher) TaskUpdated(task, changes, user, project map[string]any) {
	d.Dispatch(EventTaskUpdated, map[string]any{
		"task":    task,
		"changes": changes,
		"user":    user,
		"project": project,
	})
}

func (d *Dispatcher) TaskStatusChanged(task map[string]any, oldStatus, newStatus string, user, project map[string]any) {
	d.Dispatch(EventTaskStatusChanged, map[string]any{
		"task":       task,
		"old_status": oldStatus,
		"new_status": newStatus,
		"user":       user,
		"project":    project,
	})
}

func (d *Dispatcher) TaskAssigned(task, assignee, user, project map[string]any) {
	d.Dispatch(EventTaskAssigned, map[string]any{
		"task":     task,
		"assignee": assignee,
		"user":     user,
		"project":  project,
	})
}

func (d *Dispatcher) TaskDeleted(task, user, project map[string]any) {
	d.Dispatch(EventTaskDeleted, map[string]any{
		"task":    task,
		"user":    user,
		"project": project,
	})
}

func (d *Dispatcher) CommentAdded(comment, task, user, project map[string]any) {
	d.Dispatch(EventCommentAdded, map[string]any{
		"comment": comment,
		"task":    task,
		"user":    user,
		"project": project,
	})
}

func (d *Dispatcher) ProjectUpdated(project, changes, user map[string]any) {
	d.Dispatch(EventProjectUpdated, map[string]any{
		"project": project,
		"changes": changes,
		"user":    user,
	})
}

func (d *Dispatcher) MemberAdded(project, member, user map[string]any) {
	d.Dispatch(EventMemberAdded, map[string]any{
		"project": project,
		"member":  member,
		"user":    user,
	})
}

func (d *Dispatcher) MemberRoleChanged(project, member map[string]any, oldRole, newRole string, changedBy map[string]any) {
	d.Dispatch(EventMemberRoleChanged, map[string]any{
		"project":    project,
		"member":     member,
		"old_role":   oldRole,
		"new_role":   newRole,
		"changed_by": changedBy,
	})
}

func (d *Dispatcher) MemberRemoved(project, member, user map[string]any) {
	d.Dispatch(EventMemberRemoved, map[string]any{
		"project": project,
		"member":  member,
		"user":    user,
	})
}
