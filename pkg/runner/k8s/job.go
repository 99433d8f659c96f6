package k8s

import (
	"sort"

	"github.com/saveourtool/save-cloud/pkg/runner"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const agentContainerName = "save-agent"

// EnvPodName is set to the pod name, which save-agent reports as its container id.
const EnvPodName = runner.EnvContainerId

// BuildJob composes a Job running `replicas` save-agents in parallel.
//
// Pods are never restarted and the Job is never retried; a failing agent is
// detected by heartbeats, and its tests are handed to other agents.
func BuildJob(namespace string, executionId int64, conf runner.RunConfiguration, replicas int32) *kubebatch.Job {
	labels := runner.Labels(executionId)

	env := []kubecore.EnvVar{}
	keys := make([]string, 0, len(conf.Env))
	for k := range conf.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, kubecore.EnvVar{Name: k, Value: conf.Env[k]})
	}
	env = append(env, kubecore.EnvVar{
		Name: EnvPodName,
		ValueFrom: &kubecore.EnvVarSource{
			FieldRef: &kubecore.ObjectFieldSelector{FieldPath: "metadata.name"},
		},
	})

	resources := kubecore.ResourceRequirements{}
	if 0 < len(conf.Resources.Requests) {
		resources.Requests = kubecore.ResourceList{}
		for k, v := range conf.Resources.Requests {
			resources.Requests[kubecore.ResourceName(k)] = v
		}
	}
	if 0 < len(conf.Resources.Limits) {
		resources.Limits = kubecore.ResourceList{}
		for k, v := range conf.Resources.Limits {
			resources.Limits[kubecore.ResourceName(k)] = v
		}
	}

	var ttl *int32
	if 0 < conf.TTLAfterFinished {
		sec := int32(conf.TTLAfterFinished.Seconds())
		ttl = &sec
	}
	backoffLimit := int32(0)
	parallelism := replicas
	completions := replicas

	return &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      runner.ExecutionResourceName(executionId),
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: kubebatch.JobSpec{
			Parallelism:             &parallelism,
			Completions:             &completions,
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: ttl,
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: labels,
				},
				Spec: kubecore.PodSpec{
					RestartPolicy:      kubecore.RestartPolicyNever,
					ServiceAccountName: conf.ServiceAccount,
					Containers: []kubecore.Container{
						{
							Name:       agentContainerName,
							Image:      conf.Image,
							Command:    conf.Command,
							Args:       conf.Args,
							WorkingDir: conf.WorkingDir,
							Env:        env,
							Resources:  resources,
						},
					},
				},
			},
		},
	}
}
