package classifier

// GridSearch picks the regularisation strength by stratified k-fold
// cross-validation and refits on the full data with the winner.
type GridSearch struct {
	Base    Logistic
	Lambdas []float64
	Folds   int
}

// DefaultGridSearch mirrors a 5-fold search over four strengths.
func DefaultGridSearch() GridSearch {
	return GridSearch{
		Base:    DefaultLogistic(),
		Lambdas: []float64{0.001, 0.01, 0.1, 1},
		Folds:   5,
	}
}

// Fit runs the search. With too few minority samples for two folds it falls
// back to the base trainer.
func (g GridSearch) Fit(x [][]float64, y []bool) (*Model, error) {
	if err := checkTrainingSet(x, y); err != nil {
		return nil, err
	}

	pos, neg := countClasses(y)
	k := min(g.Folds, pos, neg)
	if k < 2 || len(g.Lambdas) == 0 {
		return g.Base.Fit(x, y)
	}

	folds := stratifiedFolds(y, k)
	bestLambda := g.Base.Lambda
	bestScore := -1.0
	for _, lambda := range g.Lambdas {
		trainer := g.Base
		trainer.Lambda = lambda

		var total float64
		var scored int
		for f := 0; f < k; f++ {
			trainX, trainY, testX, testY := split(x, y, folds, f)
			m, err := trainer.Fit(trainX, trainY)
			if err != nil {
				continue
			}
			total += m.Accuracy(testX, testY)
			scored++
		}
		if scored == 0 {
			continue
		}
		if score := total / float64(scored); score > bestScore {
			bestScore = score
			bestLambda = lambda
		}
	}

	final := g.Base
	final.Lambda = bestLambda
	return final.Fit(x, y)
}

// stratifiedFolds assigns each sample a fold so both classes are spread
// round-robin across folds in input order.
func stratifiedFolds(y []bool, k int) []int {
	folds := make([]int, len(y))
	var nextPos, nextNeg int
	for i, v := range y {
		if v {
			folds[i] = nextPos % k
			nextPos++
		} else {
			folds[i] = nextNeg % k
			nextNeg++
		}
	}
	return folds
}

func split(x [][]float64, y []bool, folds []int, held int) (trainX [][]float64, trainY []bool, testX [][]float64, testY []bool) {
	for i := range x {
		if folds[i] == held {
			testX = append(testX, x[i])
			testY = append(testY, y[i])
		} else {
			trainX = append(trainX, x[i])
			trainY = append(trainY, y[i])
		}
	}
	return trainX, trainY, testX, testY
}
