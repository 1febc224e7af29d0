package service

import "fmt"

// DependentFailure 主操作已成功、附带步骤失败的记录
type DependentFailure struct {
	Step string
	Err  error
}

// Outcome 区分“主操作成功但附带步骤失败”与完全成功
//
// 主操作失败直接以 error 返回；Outcome 只记录主操作成功之后的失败。
type Outcome struct {
	DependentFailures []DependentFailure
}

// Fail 记录一个附带步骤失败
func (o *Outcome) Fail(step string, err error) {
	if err == nil {
		return
	}
	o.DependentFailures = append(o.DependentFailures, DependentFailure{Step: step, Err: err})
}

// OK 所有附带步骤均成功
func (o *Outcome) OK() bool {
	return len(o.DependentFailures) == 0
}

// Warnings 面向调用方的告警文案
func (o *Outcome) Warnings() []string {
	if o.OK() {
		return nil
	}
	out := make([]string, 0, len(o.DependentFailures))
	for _, f := range o.DependentFailures {
		out = append(out, fmt.Sprintf("%s: %v", f.Step, f.Err))
	}
	return out
}
